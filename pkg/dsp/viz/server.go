package viz

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// viewTimeout is how long after the last page or image request a bucket
// keeps being rendered.
const viewTimeout = 5 * time.Second

type Producer interface {
	Name() string
	GetImage() *ImageContainer
	AddPlotOption(opt PlotOptions)
}

type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	port            int
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
}

func NewServer(port int, updateInterval time.Duration) *Server {
	s := &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		port:            port,
		lastViewed:      make(map[string]time.Time),
		updateInterval:  updateInterval,
		enabled:         true,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run renders viewed buckets every update interval and serves them until
// Stop is called.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.srv.Shutdown(context.Background())
				return
			case <-ticker.C:
				s.refresh(false)
			}
		}
	}()

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Refresh renders every registered producer once, viewed or not.
func (s *Server) Refresh() {
	s.refresh(true)
}

func (s *Server) refresh(all bool) {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	type job struct {
		bucket string
		p      Producer
	}
	var jobs []job
	for bucketName, bucket := range s.producerBuckets {
		if !all && time.Since(s.lastViewed[bucketName]) > viewTimeout {
			continue
		}
		for _, p := range bucket {
			jobs = append(jobs, job{bucket: bucketName, p: p})
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			img := j.p.GetImage()
			if img == nil {
				return
			}

			s.mu.Lock()
			mb, ok := s.images[j.bucket]
			if !ok {
				mb = make(map[string]*ImageContainer)
				s.images[j.bucket] = mb
			}
			mb[img.name] = img
			s.mu.Unlock()
		}(j)
	}
	wg.Wait()
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/", s.handleIndex)
	router.GET("/view/:bucket", s.handleView)
	router.GET("/img/:bucket/:img", s.handleImage)
	return router
}

func (s *Server) sortedBuckets() []string {
	keys := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.RLock()
	keys := s.sortedBuckets()
	s.mu.RUnlock()

	if len(keys) == 0 {
		http.Error(w, "no plots registered", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, "/view/"+url.PathEscape(keys[0]), http.StatusFound)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucket := params.ByName("bucket")

	s.mu.Lock()
	itemsForBucket, ok := s.producerBuckets[bucket]
	if ok {
		s.lastViewed[bucket] = time.Now()
	}
	buckets := s.sortedBuckets()
	names := make([]string, 0, len(itemsForBucket))
	for key := range itemsForBucket {
		names = append(names, key)
	}
	interval := s.updateInterval
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><head><title>EMG Viz</title></head>`)
	fmt.Fprintf(w, `
		<script type="text/javascript">
			var toggleRefresh = true;
			function toggleOn() {
				toggleRefresh = !toggleRefresh;
			}

			function changeBucket() {
				var val = document.getElementById('bucketSelector').value;
				window.location.href = '/view/' + encodeURIComponent(val);
			}
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						if (toggleRefresh) {
							image.src = image.src.split("?")[0] + "?" + new Date().getTime();
						}
					}, %d, img);
				}
			}
		</script>`, len(names), interval.Milliseconds())
	fmt.Fprint(w, `<body style='background-color: black'>`)

	fmt.Fprint(w, `<select id="bucketSelector" onchange="changeBucket()">`)
	for _, bucketName := range buckets {
		selected := ""
		if bucketName == bucket {
			selected = " selected"
		}
		fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, html.EscapeString(bucketName), selected, html.EscapeString(bucketName))
	}
	fmt.Fprint(w, `</select>`)
	fmt.Fprint(w, `<button onclick="toggleOn()">Refresh?</button>`)

	fmt.Fprint(w, `<div style="display: flex; flex-direction: row; flex-wrap: wrap">`)
	for idx, name := range names {
		fmt.Fprintf(w, `<div><img id="graph-%d" src="/img/%s/%s?%d" /></div>`,
			idx, url.PathEscape(bucket), url.PathEscape(name), time.Now().UnixMicro())
	}
	fmt.Fprint(w, `</div></body></html>`)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucketName := params.ByName("bucket")
	imgName := params.ByName("img")

	s.mu.Lock()
	if _, ok := s.producerBuckets[bucketName]; ok {
		s.lastViewed[bucketName] = time.Now()
	}
	img, ok := s.images[bucketName][imgName]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(img.data)
}
