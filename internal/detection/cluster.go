package detection

import (
	"fmt"
	"sort"

	"github.com/openlews/openlews/internal/geo"
)

// Clustering parameters. A cluster needs the seed plus at least two
// high-risk neighbors inside the correlation radius.
const (
	ClusterRiskFloor = 0.6
	MinClusterSize   = 3
)

// Cluster is a spatially coherent group of high-risk sensors. The center
// sensor is the highest-composite member and names the cluster.
type Cluster struct {
	CenterSensorID string   `json:"center_sensor_id"`
	Members        []string `json:"members"`
	CentroidLat    float64  `json:"centroid_lat"`
	CentroidLon    float64  `json:"centroid_lon"`
	AvgComposite   float64  `json:"avg_composite"`
	MaxComposite   float64  `json:"max_composite"`
	Correlation    float64  `json:"correlation"`
}

// Size returns the number of member sensors
func (c *Cluster) Size() int {
	return len(c.Members)
}

// Identity is the stable detection identity used for alert deduplication
func (c *Cluster) Identity() string {
	return fmt.Sprintf("CLUSTER_%s", c.CenterSensorID)
}

// DetectClusters greedily groups high-risk sensors. Candidates are
// visited in descending composite order so the strongest signal seeds
// each cluster; once claimed, a sensor never joins a second cluster.
func DetectClusters(assessments map[string]*Assessment) []Cluster {
	candidates := make([]*Assessment, 0, len(assessments))
	for _, a := range assessments {
		if a.CompositeRisk >= ClusterRiskFloor {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CompositeRisk != candidates[j].CompositeRisk {
			return candidates[i].CompositeRisk > candidates[j].CompositeRisk
		}
		return candidates[i].SensorID < candidates[j].SensorID
	})

	claimed := make(map[string]bool, len(candidates))
	var clusters []Cluster

	for _, seed := range candidates {
		if claimed[seed.SensorID] {
			continue
		}

		members := []*Assessment{seed}
		for _, other := range candidates {
			if other.SensorID == seed.SensorID || claimed[other.SensorID] {
				continue
			}
			d := geo.Distance(seed.Reading.Latitude, seed.Reading.Longitude,
				other.Reading.Latitude, other.Reading.Longitude)
			if d <= CorrelationRadiusM {
				members = append(members, other)
			}
		}
		if len(members) < MinClusterSize {
			continue
		}

		cluster := Cluster{
			CenterSensorID: seed.SensorID,
			Correlation:    seed.SpatialCorrelation,
		}
		var sumLat, sumLon, sumRisk float64
		for _, m := range members {
			claimed[m.SensorID] = true
			cluster.Members = append(cluster.Members, m.SensorID)
			sumLat += m.Reading.Latitude
			sumLon += m.Reading.Longitude
			sumRisk += m.CompositeRisk
			if m.CompositeRisk > cluster.MaxComposite {
				cluster.MaxComposite = m.CompositeRisk
			}
		}
		sort.Strings(cluster.Members)
		n := float64(len(members))
		cluster.CentroidLat = sumLat / n
		cluster.CentroidLon = sumLon / n
		cluster.AvgComposite = sumRisk / n

		clusters = append(clusters, cluster)
	}

	return clusters
}
