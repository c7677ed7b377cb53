package dummydb

import (
	"sync"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

type (
	DB struct {
		fees *feeTables
	}

	feeTables struct {
		sync.RWMutex
		templates    map[string]map[int]*fee.FeeTemplate // logical id -> version
		exceptions   map[string]*fee.FeeException
		students     map[string]*fee.Student
		obligations  map[string]*fee.Obligation
		transactions map[string]*fee.FeeTransaction
		txnOrder     []string // insertion order, i.e. posting order
	}
)

func Open() (*DB, error) {
	db := &DB{
		fees: &feeTables{
			templates:    make(map[string]map[int]*fee.FeeTemplate),
			exceptions:   make(map[string]*fee.FeeException),
			students:     make(map[string]*fee.Student),
			obligations:  make(map[string]*fee.Obligation),
			transactions: make(map[string]*fee.FeeTransaction),
		},
	}
	return db, nil
}
