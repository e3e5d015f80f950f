package viewstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"daybook/internal/core"
	"daybook/internal/services"

	"github.com/shopspring/decimal"
)

const (
	MsgInvalidTitle    = "Please enter a valid name"
	MsgInvalidAmount   = "Amount must be greater than 0"
	MsgMissingDate     = "Please select a date"
	MsgMissingCategory = "Please select a category"
	MsgAdded           = "Transaction added"
	MsgAlreadyExists   = "This expense already exists. Please check the details and try again."
)

type Inserter interface {
	Insert(ctx context.Context, t core.Transaction) (services.InsertResult, error)
}

// AddInput is the raw form. Amount and Date are the strings the user typed;
// Date accepts dd/MM/yyyy or yyyy-MM-dd. With Income set the category is
// forced to Income and Source is kept in the note.
type AddInput struct {
	Title      string
	Amount     string
	Date       string
	Category   string
	Note       string
	ReceiptRef string
	Income     bool
	Source     string
}

// AddState reports the last submit. Result is meaningful once Phase is
// Succeeded or Failed after reaching the repository; validation failures
// leave it at InsertError with Validation set.
type AddState struct {
	Phase      Phase
	Result     services.InsertResult
	Validation bool
	Message    string
}

type AddTransactionHolder struct {
	*scope
	repo      Inserter
	max       decimal.Decimal
	formatter *core.Formatter

	mu    sync.RWMutex
	state AddState
}

// NewAddTransactionHolder rejects amounts above max; a zero max means
// core.DefaultMaxAmount.
func NewAddTransactionHolder(ctx context.Context, repo Inserter, max decimal.Decimal, formatter *core.Formatter) *AddTransactionHolder {
	if !max.IsPositive() {
		max = decimal.NewFromInt(core.DefaultMaxAmount)
	}
	if formatter == nil {
		formatter = core.DefaultFormatter()
	}
	return &AddTransactionHolder{scope: newScope(ctx), repo: repo, max: max, formatter: formatter}
}

func (h *AddTransactionHolder) State() AddState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *AddTransactionHolder) Reset() {
	h.set(AddState{})
}

// Submit validates in and, when valid, inserts it in the background. Invalid
// input never reaches the repository. A submit while one is in flight, or
// after Close, is ignored.
func (h *AddTransactionHolder) Submit(in AddInput) {
	h.mu.Lock()
	if h.state.Phase == Loading || h.closed() {
		h.mu.Unlock()
		return
	}
	t, msg := h.build(in)
	if msg != "" {
		h.state = AddState{Phase: Failed, Result: services.InsertError, Validation: true, Message: msg}
		h.mu.Unlock()
		h.changed()
		return
	}
	h.state = AddState{Phase: Loading}
	h.mu.Unlock()
	h.changed()

	launched := h.launch(func(ctx context.Context) error {
		res, err := h.repo.Insert(ctx, t)
		switch {
		case err != nil:
			h.set(AddState{Phase: Failed, Result: services.InsertError, Message: MsgTryAgain})
		case res == services.InsertAlreadyExists:
			h.set(AddState{Phase: Failed, Result: res, Message: MsgAlreadyExists})
		case res == services.InsertSuccess:
			h.set(AddState{Phase: Succeeded, Result: res, Message: MsgAdded})
		default:
			h.set(AddState{Phase: Failed, Result: services.InsertError, Message: MsgTryAgain})
		}
		return nil
	})
	if !launched {
		h.set(AddState{})
	}
}

func (h *AddTransactionHolder) set(s AddState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	h.changed()
}

// build turns the form into a transaction or returns the message to show.
func (h *AddTransactionHolder) build(in AddInput) (core.Transaction, string) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return core.Transaction{}, MsgInvalidTitle
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, MsgInvalidAmount
	}

	var date core.Date
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			return core.Transaction{}, MsgMissingDate
		}
	}

	category := strings.TrimSpace(in.Category)
	note := strings.TrimSpace(in.Note)
	if in.Income {
		category = core.IncomeCategory
		if src := strings.TrimSpace(in.Source); src != "" {
			if note == "" {
				note = src
			} else {
				note = src + ": " + note
			}
		}
	}

	t := core.NewTransaction(title, amount, date, category)
	t.Note = note
	t.ReceiptRef = strings.TrimSpace(in.ReceiptRef)

	switch err := t.ValidateWithLimit(h.max); {
	case err == nil:
		return t, ""
	case errors.Is(err, core.ErrEmptyTitle), errors.Is(err, core.ErrTitleTooLong):
		return t, MsgInvalidTitle
	case errors.Is(err, core.ErrAmountTooLarge):
		return t, fmt.Sprintf("Amount must not exceed %s", h.formatter.Format(h.max))
	case errors.Is(err, core.ErrMissingDate):
		return t, MsgMissingDate
	case errors.Is(err, core.ErrEmptyCategory):
		return t, MsgMissingCategory
	default:
		return t, MsgInvalidAmount
	}
}
