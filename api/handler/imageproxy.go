package handler

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/models"
)

const (
	maxImageBytes = 10 << 20
	imageUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Image returns the handler for GET /api/v1/image. It fetches a product
// image server-side with an origin referer, working around shops that
// refuse hotlinked images, and streams it back with the origin content
// type.
func Image() gin.HandlerFunc {
	client := &http.Client{Timeout: 15 * time.Second}

	return func(c *gin.Context) {
		raw := c.Query("url")
		u, err := url.Parse(raw)
		if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			c.JSON(http.StatusBadRequest, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "url query parameter must be an absolute http(s) URL",
				},
			})
			return
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, raw, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Header.Set("User-Agent", imageUA)
		req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")

		resp, err := client.Do(req)
		if err != nil {
			c.JSON(http.StatusBadGateway, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeFetchFailed,
					Message: "image fetch failed: " + err.Error(),
				},
			})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 || resp.ContentLength > maxImageBytes {
			c.JSON(http.StatusBadGateway, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeFetchFailed,
					Message: "image origin refused the request",
				},
			})
			return
		}

		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, resp.ContentLength, ct,
			io.LimitReader(resp.Body, maxImageBytes), nil)
	}
}
