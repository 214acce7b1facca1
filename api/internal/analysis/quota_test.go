package analysis

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("googleapi: Error 429: Resource has been exhausted"), true},
		{errors.New("Quota exceeded for quota metric"), true},
		{errors.New("QUOTA"), true},
		{fmt.Errorf("wrapped: %w", errors.New("daily quota reached")), true},
		{errors.New("500 Internal"), false},
		{errors.New("404 model not found"), false},
		{errors.New("context deadline exceeded"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsQuotaError(tc.err); got != tc.want {
			t.Errorf("IsQuotaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
