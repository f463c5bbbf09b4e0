package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key layout (all namespaced by profile ID; profile IDs must not contain ':'):
//
//	realtime:views:<profile>             TTL-bucketed view counter
//	realtime:clicks:<profile>            TTL-bucketed click counter
//	geo:<profile>                        country histogram (hash)
//	devices:<profile>                    device histogram (hash)
//	links:<profile>                      per-link click histogram (hash)
//	funnel:<profile>                     funnel-step histogram (hash)
//	visitors:<profile>:<YYYY-MM-DD>      daily unique-visitor HLL, 24h TTL
//	pageview:<profile>:<unixnano>:<id>   retained raw event record
//	linkclick:<profile>:<unixnano>:<id>  retained raw event record
//
// Record keys embed the event timestamp so that range filtering and the
// retention sweep can work from the key alone.

const linkOverflowBucket = "_overflow"

func realtimeViewsKey(profileID string) string {
	return "realtime:views:" + profileID
}

func realtimeClicksKey(profileID string) string {
	return "realtime:clicks:" + profileID
}

func geoKey(profileID string) string {
	return "geo:" + profileID
}

func devicesKey(profileID string) string {
	return "devices:" + profileID
}

func linksKey(profileID string) string {
	return "links:" + profileID
}

func funnelKey(profileID string) string {
	return "funnel:" + profileID
}

// visitorsKey names the probabilistic visitor set for one calendar day (UTC).
func visitorsKey(profileID string, day time.Time) string {
	return fmt.Sprintf("visitors:%s:%s", profileID, day.UTC().Format("2006-01-02"))
}

func pageViewRecordKey(profileID string, at time.Time, eventID string) string {
	return fmt.Sprintf("pageview:%s:%d:%s", profileID, at.UnixNano(), eventID)
}

func pageViewRecordPattern(profileID string) string {
	return fmt.Sprintf("pageview:%s:*", profileID)
}

func linkClickRecordKey(profileID string, at time.Time, eventID string) string {
	return fmt.Sprintf("linkclick:%s:%d:%s", profileID, at.UnixNano(), eventID)
}

func linkClickRecordPattern(profileID string) string {
	return fmt.Sprintf("linkclick:%s:*", profileID)
}

// recordKeyTime extracts the embedded timestamp from a record key.
func recordKeyTime(key string) (time.Time, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 4 {
		return time.Time{}, fmt.Errorf("malformed record key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed record key timestamp in %s: %w", key, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}
