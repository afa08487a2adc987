package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportPage = `<html><head><title>alert</title></head><body>
<nav><a href="/home">Home</a></nav>
<p>Safety Alert: 12/2024</p>
<p>Subject: Fatal accident due to roof fall.</p>
<script>console.log("ignored")</script>
</body></html>`

func TestFetcher_HTMLReducedToParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "minewatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(reportPage))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "minewatch-test")
	text, err := f.FetchText(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Safety Alert: 12/2024")
	assert.Contains(t, text, "Fatal accident due to roof fall.")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "Home")
}

func TestFetcher_MaxBytesBoundsPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(strings.Repeat("x", 10000)))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "minewatch-test")
	text, err := f.FetchText(context.Background(), srv.URL, 4096)
	require.NoError(t, err)
	assert.Len(t, text, 4096)
}

func TestFetcher_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "minewatch-test")
	_, err := f.FetchText(context.Background(), srv.URL, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

const listingPage = `<html><body>
<ul>
<li><a href="/reports/sa-12-2024.pdf">Fatal Accident at Putki Colliery</a></li>
<li><a href="/reports/annual.pdf">Annual Statistics</a></li>
<li><a href="/circulars/fatal-sa-7-2023.pdf">Circular</a></li>
<li><a href="/reports/sa-12-2024.pdf">Fatal Accident at Putki Colliery</a></li>
<li><a>Fatal accident without href</a></li>
</ul>
</body></html>`

func TestIndexScraper_FiltersAndResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	s := NewIndexScraper(srv.Client(), srv.URL+"/listing", "minewatch-test")
	links, err := s.ScrapeIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Fatal Accident at Putki Colliery", links[0].Title)
	assert.Equal(t, srv.URL+"/reports/sa-12-2024.pdf", links[0].URL)
	assert.Equal(t, srv.URL+"/circulars/fatal-sa-7-2023.pdf", links[1].URL)
}

func TestIndexScraper_NetworkErrorSurfaces(t *testing.T) {
	s := NewIndexScraper(&http.Client{}, "http://127.0.0.1:1/listing", "minewatch-test")
	_, err := s.ScrapeIndex(context.Background())
	assert.Error(t, err)
}
