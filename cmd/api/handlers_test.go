package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"hums/internal/domain"
)

func TestHTTPErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing entity", domain.NotFoundf("occurrence %d", 42), http.StatusNotFound},
		{"invalid input", domain.Validationf("slots must be at least 1"), http.StatusBadRequest},
		{"anything else", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			httpError(c, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
