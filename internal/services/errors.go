package services

import "errors"

// Custom errors shared by the services
var (
	ErrBadRequest    = errors.New("bad request")
	ErrEmptyOutput   = errors.New("Dify response had no data.outputs. Check your workflow output nodes.")
	ErrPersistence   = errors.New("Failed to save to database")
	ErrStyleNotFound = errors.New("style not found")
)

// persistenceHint is appended to store write failures; most of them are access-control problems.
const persistenceHint = " If the error is related to permissions, check the access-control policies (RLS or grants) for the styles table."
