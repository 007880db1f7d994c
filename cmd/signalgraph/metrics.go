package main

import "github.com/prometheus/client_golang/prometheus"

func prometheusDefaultRegisterer() prometheus.Registerer {
	return prometheus.NewRegistry()
}
