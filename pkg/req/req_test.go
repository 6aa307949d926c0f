package req

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamURI struct {
	StreamID string `uri:"stream_id" validate:"required,max=8"`
}

func TestBindURI(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid", "/streams/abc", false},
		{"too long", "/streams/abcdefghijk", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got *streamURI
				err error
			)
			router := gin.New()
			router.GET("/streams/:stream_id", func(c *gin.Context) {
				got, err = BindURI[streamURI](c)
			})
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "abc", got.StreamID)
		})
	}
}
