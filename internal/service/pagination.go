package service

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// clampPage applies the default page size and caps limit and offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
