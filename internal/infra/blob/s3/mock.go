package s3

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store backed by an in-memory fake HTTP transport.
// Only the operations used by core.Store are implemented: Head, Get,
// conditional Put, Delete and paginated ListObjectsV2.
func NewMockForTests() *Store {
	rt := &mockTransport{objects: make(map[string]mockObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(DefaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIAMOCK", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return newStore(client, "mock-bucket")
}

type mockTransport struct {
	mu      sync.Mutex
	objects map[string]mockObject
}

type mockObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

func (o mockObject) etag() string {
	sum := md5.Sum(o.body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// path-style: /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	query := req.URL.Query()
	if req.Method == http.MethodGet && query.Get("list-type") == "2" {
		return m.list(query.Get("prefix"), query.Get("continuation-token"), query.Get("max-keys")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), nil), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, xmlHeader(), errorBody("NoSuchKey", key)), nil
		}
		return respond(http.StatusOK, objectHeaders(obj), bytes.Clone(obj.body)), nil
	case http.MethodPut:
		if _, exists := m.objects[key]; exists && req.Header.Get("If-None-Match") == "*" {
			return respond(http.StatusPreconditionFailed, xmlHeader(), errorBody("PreconditionFailed", key)), nil
		}
		body, err := readBody(req)
		if err != nil {
			return nil, err
		}
		obj := mockObject{
			body:        body,
			contentType: req.Header.Get("Content-Type"),
			metadata:    map[string]string{},
			modified:    time.Now().UTC().Truncate(time.Second),
		}
		for name, values := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") && len(values) > 0 {
				obj.metadata[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		m.objects[key] = obj
		return respond(http.StatusOK, http.Header{"Etag": {obj.etag()}}, nil), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (m *mockTransport) list(prefix, token, maxKeys string) *http.Response {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	limit := 1000
	if n, err := strconv.Atoi(maxKeys); err == nil && n > 0 {
		limit = n
	}
	truncated := len(keys) > limit
	if truncated {
		keys = keys[:limit]
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated><KeyCount>%d</KeyCount>", truncated, len(keys))
	if truncated {
		b.WriteString("<NextContinuationToken>")
		_ = xml.EscapeText(&b, []byte(keys[len(keys)-1]))
		b.WriteString("</NextContinuationToken>")
	}
	for _, k := range keys {
		obj := m.objects[k]
		b.WriteString("<Contents><Key>")
		_ = xml.EscapeText(&b, []byte(k))
		fmt.Fprintf(&b, "</Key><Size>%d</Size><ETag>%s</ETag><LastModified>%s</LastModified></Contents>",
			len(obj.body), strings.ReplaceAll(obj.etag(), `"`, "&quot;"), obj.modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, xmlHeader(), []byte(b.String()))
}

func objectHeaders(obj mockObject) http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Etag":           {obj.etag()},
		"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
	}
	if obj.contentType != "" {
		h.Set("Content-Type", obj.contentType)
	}
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func xmlHeader() http.Header { return http.Header{"Content-Type": {"application/xml"}} }

func errorBody(code, key string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>`)
	b.WriteString(code)
	b.WriteString("</Code><Key>")
	_ = xml.EscapeText(&b, []byte(key))
	b.WriteString("</Key></Error>")
	return []byte(b.String())
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// readBody returns the request payload, undoing aws-chunked framing when the
// SDK streams with trailing checksums.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if req.Header.Get("X-Amz-Decoded-Content-Length") == "" &&
		!strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
		return raw, nil
	}
	return decodeAWSChunked(raw)
}

func decodeAWSChunked(raw []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("aws-chunked header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("aws-chunked size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("aws-chunked body: %w", err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("aws-chunked terminator: %w", err)
		}
	}
}
