package services

import (
	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/detection"
)

// Detection is one alert-worthy finding handed from the analysis pass to
// assessment and lifecycle. It is either a single sensor or a cluster.
type Detection struct {
	Type       string
	Assessment *detection.Assessment // the sensor, or the cluster's center sensor
	Cluster    *detection.Cluster    // nil for individual detections
}

// Identity is the stable key used to deduplicate alerts across cycles
func (d *Detection) Identity() string {
	if d.Cluster != nil {
		return d.Cluster.Identity()
	}
	return d.Assessment.SensorID
}

// Location returns the representative coordinates of the detection: the
// cluster centroid, or the sensor position.
func (d *Detection) Location() (lat, lon float64) {
	if d.Cluster != nil {
		return d.Cluster.CentroidLat, d.Cluster.CentroidLon
	}
	return d.Assessment.Reading.Latitude, d.Assessment.Reading.Longitude
}

// Risk returns the composite risk driving this detection: the cluster
// maximum, or the sensor's own composite.
func (d *Detection) Risk() float64 {
	if d.Cluster != nil {
		return d.Cluster.MaxComposite
	}
	return d.Assessment.CompositeRisk
}

// IndividualDetection wraps a single hot sensor
func IndividualDetection(a *detection.Assessment) *Detection {
	return &Detection{
		Type:       database.DetectionTypeIndividual,
		Assessment: a,
	}
}

// ClusterDetection wraps a cluster, carrying its center sensor's
// assessment for prompt building.
func ClusterDetection(c *detection.Cluster, center *detection.Assessment) *Detection {
	return &Detection{
		Type:       database.DetectionTypeCluster,
		Assessment: center,
		Cluster:    c,
	}
}
