package detection

import (
	"sync"
	"time"

	"github.com/openlews/openlews/internal/database"
)

// maxScoreWorkers bounds the scoring fan-out for large sensor fleets
const maxScoreWorkers = 8

// Analysis is the full output of one detection pass over a reading
// window.
type Analysis struct {
	Assessments map[string]*Assessment
	Clusters    []Cluster
	GeneratedAt time.Time
}

// Analyze scores every reading, folds in spatial correlation and groups
// the correlated high-risk sensors into clusters. Scoring is independent
// per sensor and runs on a bounded worker pool; correlation needs every
// intrinsic score, so it runs after the pool drains.
func Analyze(readings map[string]database.SensorReading) *Analysis {
	assessments := make(map[string]*Assessment, len(readings))

	workers := maxScoreWorkers
	if len(readings) < workers {
		workers = len(readings)
	}

	if workers > 1 {
		jobs := make(chan database.SensorReading, len(readings))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for r := range jobs {
					a := &Assessment{
						SensorID:  r.SensorID,
						RiskScore: Score(r),
						Reading:   r,
					}
					mu.Lock()
					assessments[r.SensorID] = a
					mu.Unlock()
				}
			}()
		}
		for _, r := range readings {
			jobs <- r
		}
		close(jobs)
		wg.Wait()
	} else {
		for id, r := range readings {
			assessments[id] = &Assessment{
				SensorID:  id,
				RiskScore: Score(r),
				Reading:   r,
			}
		}
	}

	for id, a := range assessments {
		a.SpatialCorrelation = Correlate(id, assessments)
		a.CompositeRisk = Compose(a.RiskScore, a.SpatialCorrelation)
	}

	return &Analysis{
		Assessments: assessments,
		Clusters:    DetectClusters(assessments),
		GeneratedAt: time.Now().UTC(),
	}
}
