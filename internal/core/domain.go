package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

type (
	TransactionType string

	// ID is an entity identifier. Remote payloads are not consistent about
	// encoding ids as strings, so numbers are accepted and kept in their
	// decimal text form.
	ID string

	// Transaction is a raw expense or income record as delivered by the
	// fetch layer. It is read-only to the cache and the statistics engine.
	Transaction struct {
		ID            ID              `json:"id"`
		Description   string          `json:"description"`
		Amount        Amount          `json:"amount"`
		Type          TransactionType `json:"type"`
		DueDate       DateValue       `json:"dueDate"`
		ReceivedDate  DateValue       `json:"receivedDate"`
		PaymentDate   DateValue       `json:"paymentDate"`
		IsPaid        *bool           `json:"isPaid,omitempty"`
		IsReceived    *bool           `json:"isReceived,omitempty"`
		CategoryID    ID              `json:"categoryId,omitempty"`
		SubcategoryID ID              `json:"subcategoryId,omitempty"`
		CreditCardID  ID              `json:"creditCardId,omitempty"`
		BankAccountID ID              `json:"bankAccountId,omitempty"`
	}

	Category struct {
		ID    ID              `json:"id"`
		Name  string          `json:"name"`
		Color string          `json:"color,omitempty"`
		Type  TransactionType `json:"type,omitempty"`
	}

	Subcategory struct {
		ID         ID     `json:"id"`
		Name       string `json:"name"`
		CategoryID ID     `json:"categoryId"`
	}

	CreditCard struct {
		ID             ID     `json:"id"`
		Name           string `json:"name"`
		Limit          Amount `json:"limit"`
		CurrentBalance Amount `json:"currentBalance"`
		AvailableLimit Amount `json:"availableLimit"`
		ClosingDay     int    `json:"closingDay,omitempty"`
		DueDay         int    `json:"dueDay,omitempty"`
	}

	BankAccount struct {
		ID      ID     `json:"id"`
		Name    string `json:"name"`
		Type    string `json:"type,omitempty"`
		Balance Amount `json:"balance"`
	}

	Transfer struct {
		ID            ID        `json:"id"`
		Description   string    `json:"description,omitempty"`
		FromAccountID ID        `json:"fromAccountId"`
		ToAccountID   ID        `json:"toAccountId"`
		Amount        Amount    `json:"amount"`
		Date          DateValue `json:"date"`
	}
)

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	// Spreadsheet cells come back as floats ("12" is 12.0).
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Paid resolves the record's payment flag. Income records sometimes carry
// only isReceived, which is consulted when isPaid is unset. A nil result
// means the flag is unset.
func (t Transaction) Paid() *bool {
	if t.IsPaid != nil {
		return t.IsPaid
	}
	return t.IsReceived
}

// PaidStrict reports whether the payment flag is set and true.
func (t Transaction) PaidStrict() bool {
	p := t.Paid()
	return p != nil && *p
}

// PaidOrUnset treats a missing payment flag as paid.
func (t Transaction) PaidOrUnset() bool {
	p := t.Paid()
	return p == nil || *p
}

// Bool returns a pointer to b, handy for building records.
func Bool(b bool) *bool {
	return &b
}
