package core

import "labbook/pkg/domain"

type (
	EntityType         = domain.EntityType
	PageType           = domain.PageType
	Page               = domain.Page
	Kind               = domain.Kind
	Component          = domain.Component
	Passage            = domain.Passage
	Run                = domain.Run
	Block              = domain.Block
	BlockInput         = domain.BlockInput
	Snapshot           = domain.Snapshot
	Severity           = domain.Severity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityPage = domain.EntityPage
	EntityRun  = domain.EntityRun
)

const (
	PageProtocol = domain.PageProtocol
	PageReagent  = domain.PageReagent
	PageDuty     = domain.PageDuty
	PageCell     = domain.PageCell
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate  = domain.ActionCreate
	ActionUpdate  = domain.ActionUpdate
	ActionDelete  = domain.ActionDelete
	ActionReplace = domain.ActionReplace
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
