package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnsupportedDatasource  = errors.New("unsupported datasource type")
	ErrInvalidSchema          = errors.New("schema is internally inconsistent")
	ErrSchemaDrift            = errors.New("schema changed since startup")
	ErrResultSizeExceeded     = errors.New("result size exceeded")
	ErrEmptyGeneratorResponse = errors.New("generator returned no content")
)
