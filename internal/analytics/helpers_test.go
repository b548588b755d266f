package analytics

import (
	"time"

	"listingpulse/internal/events"
	"listingpulse/internal/pkg/botfilter"
	"listingpulse/internal/visitors"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

var testNow = time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

func hit(ip, ua string, at time.Time) events.TrafficEvent {
	return events.TrafficEvent{IPAddress: ip, UserAgent: ua, Timestamp: at, Path: "/"}
}

func click(ip, ua string, listingID uint, at time.Time) events.ConversionEvent {
	return conversion(events.ConversionKindClick, visitors.Identity("", ip, ua), listingID, at)
}

func conversion(kind events.ConversionKind, visitorKey string, listingID uint, at time.Time) events.ConversionEvent {
	return events.ConversionEvent{Kind: kind, VisitorKey: visitorKey, ListingID: listingID, Timestamp: at}
}

func newPool(traffic []events.TrafficEvent, clicks []events.ConversionEvent) *VisitorPool {
	return NewVisitorPool(testNow.Add(-24*time.Hour), testNow, traffic, clicks, botfilter.Default())
}
