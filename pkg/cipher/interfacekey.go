package cipher

import (
	"strconv"
	"time"
)

// DateNumber renders t's UTC calendar day as YYYYMMDD.
func DateNumber(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// InterfaceKey derives the daily key shared with tenant applications:
// area*day + area^2 + day^2.
func InterfaceKey(serviceAreaID int64, day time.Time) int64 {
	d := DateNumber(day)
	return serviceAreaID*d + serviceAreaID*serviceAreaID + d*d
}

// InterfaceKeyString is the decimal form that gets encrypted.
func InterfaceKeyString(serviceAreaID int64, day time.Time) string {
	return strconv.FormatInt(InterfaceKey(serviceAreaID, day), 10)
}
