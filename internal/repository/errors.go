package repository

import "errors"

// Общие ошибки хранилищ. Реализации (in-memory, Firestore, Postgres)
// приводят свои ошибки к этим сентинелам.
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate запись с таким ключом уже существует
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidData запись не проходит валидацию хранилища
	ErrInvalidData = errors.New("invalid data")
)
