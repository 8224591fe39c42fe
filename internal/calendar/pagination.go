package calendar

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page: одна страница выдачи слотов.
type Page[T any] struct {
	Items    []T
	Page     int // с 1
	PageSize int
	Total    int
	HasNext  bool
	HasPrev  bool
}

// Paginate режет items на страницы. Некорректные page/pageSize заменяются
// дефолтами, pageSize ограничен MaxPageSize.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	page = max(page, 1)

	total := len(items)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasNext:  end < total,
		HasPrev:  page > 1,
	}
}
