package logging

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const visitorWindow = 24 * time.Hour

// Statistics collects request statistics for the API process
type Statistics struct {
	uniqueVisitors   map[string]time.Time // IP -> last visit
	analysisRequests int
	errorCount       int
	popularURLs      map[string]int
	totalLoadTime    float64
	requestCount     int
	mutex            sync.RWMutex
	now              func() time.Time
}

// URLCount is one entry of the popular URL list
type URLCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Snapshot is the read-only view served by the statistics endpoint
type Snapshot struct {
	UniqueVisitors24h int        `json:"unique_visitors_24h"`
	TotalRequests     int        `json:"total_requests"`
	ErrorRate         float64    `json:"error_rate"`
	AverageLoadTime   float64    `json:"average_load_time_ms"`
	PopularURLs       []URLCount `json:"popular_urls,omitempty"`
}

func NewStatistics() *Statistics {
	return &Statistics{
		uniqueVisitors: make(map[string]time.Time),
		popularURLs:    make(map[string]int),
		now:            time.Now,
	}
}

// TrackVisitor records a visit from ip
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.uniqueVisitors[ip] = s.now()
}

// cleanURL reduces an analyzed URL to scheme, host and path.
// Local and API URLs return "".
func cleanURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return ""
	}

	if strings.Contains(u.Host, "localhost") ||
		strings.Contains(u.Host, "127.0.0.1") ||
		strings.Contains(strings.ToLower(u.Path), "/api/") {
		return ""
	}

	cleaned := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		cleaned += u.Path
	}
	return strings.TrimSuffix(cleaned, "/")
}

// TrackAnalysis records an analysis request for pageURL
func (s *Statistics) TrackAnalysis(pageURL string, loadTime time.Duration, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.analysisRequests++
	if cleaned := cleanURL(pageURL); cleaned != "" {
		s.popularURLs[cleaned]++
	}
	if hasError {
		s.errorCount++
	}

	s.totalLoadTime += float64(loadTime.Milliseconds())
	s.requestCount++
}

// Snapshot returns the current statistics. Popular URLs are only included
// when withURLs is set, since they reveal what other users analyzed.
func (s *Statistics) Snapshot(withURLs bool) Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		UniqueVisitors24h: s.uniqueVisitorsLocked(),
		TotalRequests:     s.analysisRequests,
	}
	if s.analysisRequests > 0 {
		snap.ErrorRate = float64(s.errorCount) / float64(s.analysisRequests) * 100
	}
	if s.requestCount > 0 {
		snap.AverageLoadTime = s.totalLoadTime / float64(s.requestCount)
	}
	if withURLs {
		snap.PopularURLs = s.popularLocked(5)
	}
	return snap
}

func (s *Statistics) uniqueVisitorsLocked() int {
	cutoff := s.now().Add(-visitorWindow)
	count := 0
	for _, lastVisit := range s.uniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

// popularLocked returns the n most analyzed URLs, ties broken by URL
func (s *Statistics) popularLocked(n int) []URLCount {
	counts := make([]URLCount, 0, len(s.popularURLs))
	for u, c := range s.popularURLs {
		counts = append(counts, URLCount{URL: u, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].URL < counts[j].URL
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
