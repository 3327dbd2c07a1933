package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shopModerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findmyphone_shop_moderation_total",
		Help: "Shop moderation transitions by action.",
	}, []string{"action"})

	listingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findmyphone_listings_created_total",
		Help: "Listings created, by producer (individual or shop).",
	}, []string{"producer"})

	listingViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findmyphone_listing_views_total",
		Help: "Listing detail views served.",
	})

	metadataCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findmyphone_metadata_cache_lookups_total",
		Help: "Metadata cache lookups by result (hit or miss).",
	}, []string{"result"})
)
