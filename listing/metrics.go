package listing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweptListingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collexa_listings_expired_total",
		Help: "Listings transitioned from active to expired by the sweeper.",
	})

	orphanedBlobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collexa_orphaned_blobs_total",
		Help: "Stored images whose delete failed and need reconciliation.",
	})
)
