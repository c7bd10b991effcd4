package store

// Collection is a page of records together with the number of records matching the
// statement across all pages.
type Collection[T any] struct {
	Items             []T
	TotalRecordsCount int64
}

func (c *Collection[T]) Len() int {
	return len(c.Items)
}

// Pages returns the number of pages of pageSize needed for every matching record.
func (c *Collection[T]) Pages(pageSize int) int {
	if pageSize <= 0 || c.TotalRecordsCount == 0 {
		return 0
	}
	return int((c.TotalRecordsCount + int64(pageSize) - 1) / int64(pageSize))
}
