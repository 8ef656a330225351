// Package msgs provides the schemas of messages published for readings.
package msgs

// Readings are produced by the driver on the sensor host and published to
// brokers, databases and browsers, which consume them without knowing the
// sensor wire format.
//
// Producer: leddard
// Consumer: leddarmon, dashboards
