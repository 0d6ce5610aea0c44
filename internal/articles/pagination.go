package articles

import (
	"net/url"
	"strconv"
)

const (
	DefaultAmount = 10
	MaxAmount     = 100
)

type Pagination struct {
	Tag    string
	MyFeed bool
	Page   int
	Amount int
}

func DefaultPagination() Pagination {
	return Pagination{Amount: DefaultAmount}
}

// ParsePagination reads tag, my_feed, page and amount. Missing or malformed
// values fall back to their defaults and amount is capped at MaxAmount.
func ParsePagination(q url.Values) Pagination {
	p := DefaultPagination()
	p.Tag = q.Get("tag")
	if v, err := strconv.ParseBool(q.Get("my_feed")); err == nil {
		p.MyFeed = v
	}
	if v, err := strconv.ParseUint(q.Get("page"), 10, 31); err == nil {
		p.Page = int(v)
	}
	if v, err := strconv.ParseUint(q.Get("amount"), 10, 31); err == nil {
		p.Amount = int(v)
	}
	return p.clamped()
}

func (p Pagination) clamped() Pagination {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Amount < 0 {
		p.Amount = DefaultAmount
	}
	if p.Amount > MaxAmount {
		p.Amount = MaxAmount
	}
	return p
}

func (p Pagination) Offset() int {
	return p.Page * p.Amount
}

func (p Pagination) NextPage() Pagination {
	p.Page++
	return p
}

func (p Pagination) PreviousPage() Pagination {
	if p.Page > 0 {
		p.Page--
	}
	return p
}

func (p Pagination) WithTag(tag string) Pagination {
	p.Tag = tag
	p.Page = 0
	return p
}

func (p Pagination) WithFeed(myFeed bool) Pagination {
	p.MyFeed = myFeed
	p.Page = 0
	return p
}

// Encode renders the pagination as a query string in a fixed field order.
func (p Pagination) Encode() string {
	return "?tag=" + url.QueryEscape(p.Tag) +
		"&my_feed=" + strconv.FormatBool(p.MyFeed) +
		"&page=" + strconv.Itoa(p.Page) +
		"&amount=" + strconv.Itoa(p.Amount)
}
