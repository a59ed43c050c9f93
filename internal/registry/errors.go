package registry

import "errors"

var (
	// ErrEmptyType is returned when create is called with an empty type.
	ErrEmptyType = errors.New("registry: type must not be empty")

	// ErrEmptyName is returned when create is called with an empty name.
	ErrEmptyName = errors.New("registry: name must not be empty")

	// ErrNameTooLong is returned when name exceeds 16 bytes.
	ErrNameTooLong = errors.New("registry: name must be at most 16 bytes")

	// ErrReservedName is returned when name is "sys", the router's
	// reserved control destination.
	ErrReservedName = errors.New("registry: \"sys\" is reserved")

	// ErrEmptyArgstring is returned when create is called with an empty
	// argstring.
	ErrEmptyArgstring = errors.New("registry: argstring must not be empty")

	// ErrDuplicateName is returned when name is already registered.
	ErrDuplicateName = errors.New("registry: name already registered")

	// ErrUnknownType is returned when type has no registered constructor.
	ErrUnknownType = errors.New("registry: unknown service type")
)
