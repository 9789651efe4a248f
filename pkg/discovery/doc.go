// Package discovery finds and announces MediaRemote endpoints over DNS-SD
// (mDNS).
//
// Devices that accept MRP connections register the _mediaremotetv._tcp
// service. The TXT record carries the device name, its unique identifier
// and whether it currently accepts pair setup.
package discovery
