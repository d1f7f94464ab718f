// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package master

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RoXxIV/multi-bat/pkg/bmsrtu"
)

const metricsNamespace = "multibat"

// Collector exports the store and exchange statistics of a Master. Values are
// read at scrape time, so polling code never touches Prometheus.
type Collector struct {
	m *Master

	soc            *prometheus.Desc
	voltage        *prometheus.Desc
	current        *prometheus.Desc
	mosTemperature *prometheus.Desc
	cellVoltage    *prometheus.Desc
	temperature    *prometheus.Desc
	mosfet         *prometheus.Desc
	fault          *prometheus.Desc
	valid          *prometheus.Desc
	age            *prometheus.Desc
	exchanges      *prometheus.Desc
	failures       *prometheus.Desc
}

// NewCollector creates a collector for m
func NewCollector(m *Master) *Collector {
	slave := []string{"slave"}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, append(slave, labels...), nil)
	}
	return &Collector{
		m:              m,
		soc:            desc("battery_soc_ratio", "State of charge as decoded (raw x 0.001)"),
		voltage:        desc("battery_voltage_volts", "Total pack voltage"),
		current:        desc("battery_current_amps", "Pack current, negative while charging"),
		mosTemperature: desc("battery_mos_temperature_celsius", "MOSFET temperature"),
		cellVoltage:    desc("battery_cell_voltage_millivolts", "Cell voltage of present cells", "cell"),
		temperature:    desc("battery_temperature_celsius", "Temperature of present sensors", "sensor"),
		mosfet:         desc("battery_mosfet_on", "MOSFET state (1 = on)", "mosfet"),
		fault:          desc("battery_fault_status", "Raw fault bitmask", "register"),
		valid:          desc("battery_data_valid", "1 once the slave has been read successfully"),
		age:            desc("battery_data_age_seconds", "Seconds since the last successful read"),
		exchanges:      desc("exchanges_total", "Exchanges with the slave", "result"),
		failures: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "exchange_failures_total"),
			"Failed exchanges by reason", []string{"reason"}, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.soc, c.voltage, c.current, c.mosTemperature, c.cellVoltage, c.temperature,
		c.mosfet, c.fault, c.valid, c.age, c.exchanges, c.failures,
	} {
		ch <- d
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	now := c.m.t.Clock().Now()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	for _, rec := range c.m.store.Snapshot() {
		id := strconv.Itoa(rec.ID)
		gauge(c.valid, boolGauge(rec.Valid), id)
		if !rec.Valid {
			continue
		}
		gauge(c.age, rec.Age(now).Seconds(), id)
		gauge(c.soc, rec.SOC, id)
		gauge(c.voltage, rec.TotalVoltage, id)
		gauge(c.current, rec.Current, id)
		gauge(c.mosTemperature, rec.MosTemperature, id)
		gauge(c.mosfet, boolGauge(rec.ChargeMosfet), id, "charge")
		gauge(c.mosfet, boolGauge(rec.DischargeMosfet), id, "discharge")
		for i, mv := range rec.CellVoltages {
			if mv != 0 {
				gauge(c.cellVoltage, float64(mv), id, strconv.Itoa(i+1))
			}
		}
		for i, present := range rec.TempPresent {
			if present {
				gauge(c.temperature, rec.Temperatures[i], id, strconv.Itoa(i+1))
			}
		}
		for i, bits := range rec.FaultStatus {
			gauge(c.fault, float64(bits), id, strconv.Itoa(i+1))
		}
	}

	stats := c.m.Stats()
	for id, ss := range stats.Slaves {
		label := strconv.Itoa(id)
		ch <- prometheus.MustNewConstMetric(c.exchanges, prometheus.CounterValue, float64(ss.Successes), label, "ok")
		ch <- prometheus.MustNewConstMetric(c.exchanges, prometheus.CounterValue, float64(ss.Exchanges-ss.Successes), label, "failed")
	}
	for _, r := range bmsrtu.Reasons() {
		if r == bmsrtu.ReasonOK {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures[r]), r.String())
	}
}
