package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	searchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twils_searches_total",
		Help: "Total number of research searches performed.",
	})
	fallbackResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twils_fallback_results_total",
		Help: "Total number of searches answered by the fallback synthesizer.",
	})
	translationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twils_translations_total",
		Help: "Total number of completed paper translations.",
	})
	chatStreamsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twils_chat_streams_total",
		Help: "Total number of chat streaming turns.",
	})
)

func init() {
	prometheus.MustRegister(searchesTotal)
	prometheus.MustRegister(fallbackResultsTotal)
	prometheus.MustRegister(translationsTotal)
	prometheus.MustRegister(chatStreamsTotal)
}
