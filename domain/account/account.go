// Package account holds the Account value object.
package account

import (
	"fmt"

	"github.com/leeforge/logfactory/domain"
)

// Account is an immutable credential record.
type Account struct {
	name     string
	id       string
	password string
}

// New creates an Account.
func New(name, id, password string) Account {
	return Account{name: name, id: id, password: password}
}

// Generate creates an Account with a freshly generated id.
func Generate(name, password string) Account {
	return New(name, domain.NewID(), password)
}

func (a Account) Name() string     { return a.name }
func (a Account) ID() string       { return a.id }
func (a Account) Password() string { return a.password }

// Equal reports whether other is an Account (value or pointer) with the same
// name, id and password.
func (a Account) Equal(other any) bool {
	switch o := other.(type) {
	case Account:
		return a == o
	case *Account:
		return o != nil && a == *o
	default:
		return false
	}
}

// String omits the password.
func (a Account) String() string {
	return fmt.Sprintf("<Account: name=%q, id=%q>", a.name, a.id)
}
