package db

import (
	"errors"
	"fmt"
)

// Sentinels the callers branch on. Everything else arrives as *Error.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op names the backend command that failed.
type Op string

// Commands issued by the redis store.
const (
	OpPing        Op = "PING"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpHSet        Op = "HSET"
	OpScan        Op = "SCAN"
	OpUnlink      Op = "UNLINK"
	OpCreateIndex Op = "FT.CREATE"
	OpDropIndex   Op = "FT.DROPINDEX"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
)

// Error is a failed backend command. Key is set when the command targeted a single key or index.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("db %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("db %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
