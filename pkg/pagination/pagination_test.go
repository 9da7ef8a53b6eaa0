package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestFromRequest_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/orders", nil)
	p := FromRequest(r)

	if p.Page != 1 || p.PerPage != 20 || p.Offset != 0 {
		t.Errorf("FromRequest() = %+v, want page=1 per_page=20 offset=0", p)
	}
}

func TestFromRequest_ExplicitValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/orders?page=3&per_page=10", nil)
	p := FromRequest(r)

	if p.Page != 3 || p.PerPage != 10 || p.Offset != 20 {
		t.Errorf("FromRequest() = %+v, want page=3 per_page=10 offset=20", p)
	}
}

func TestFromRequest_InvalidValuesIgnored(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/orders?page=-1&per_page=999", nil)
	p := FromRequest(r)

	if p.Page != 1 || p.PerPage != 20 {
		t.Errorf("FromRequest() = %+v, want defaults for out-of-range values", p)
	}
}

func TestNewResult(t *testing.T) {
	params := Params{Page: 2, PerPage: 10, Offset: 10}
	res := NewResult([]string{"a", "b"}, 25, params)

	if res.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", res.TotalPages)
	}
	if !res.HasNext {
		t.Error("HasNext = false, want true on page 2 of 3")
	}
	if !res.HasPrev {
		t.Error("HasPrev = false, want true on page 2")
	}
}
