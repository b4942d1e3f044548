package jwttoken

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tokenRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopcore_token_rejections_total",
	Help: "Tokens rejected during verification, by expected type and internal reason",
}, []string{"expected_type", "reason"})
