// Package groupid derives a globally unique correlation ID for a
// RecordGroup, for use as a filename component or a cross-reference key
// in downstream storage.
//
// Grounded on uuid.FromCookie (uuid/uuid.go): a hostname+boottime prefix,
// cached for the process lifetime, makes the ID unique across hosts and
// reboots; here it's combined with the group's own serial number instead
// of a socket cookie, since audit events have no socket to query.
package groupid

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"
)

var cachedPrefix = ""

func timeToUnix(t time.Time) int64 {
	return int64(t.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)).Seconds())
}

// getBoottimeWithRaceCondition has a race condition between the reading of
// /proc/uptime and the call to time.Now(). If, between those two syscalls, we
// cross a second-granularity time boundary, then the result will be off by one.
// It seems safe to assume, however, that this race condition won't happen twice
// in quick succession, so the recommended way to use this function is to call
// it multiple times until it returns the same answer twice.
func getBoottimeWithRaceCondition() (int64, error) {
	procuptime, err := ioutil.ReadFile("/proc/uptime")
	if err != nil {
		return -1, err
	}
	times := strings.Split(string(procuptime), " ")
	if len(times) != 2 {
		return -1, fmt.Errorf("could not split /proc/uptime into two parts")
	}
	uptime, err := strconv.ParseFloat(times[0], 64)
	if err != nil {
		return -1, fmt.Errorf("could not parse /proc/uptime into a float")
	}
	return timeToUnix(time.Now().Add(time.Duration(-1 * uptime * float64(time.Second)))), nil
}

func getBoottime() (int64, error) {
	var prev, curr int64
	curr, err := getBoottimeWithRaceCondition()
	if err != nil {
		return curr, err
	}
	for prev != curr {
		prev = curr
		curr, err = getBoottimeWithRaceCondition()
		if err != nil {
			return curr, err
		}
	}
	return curr, nil
}

// getPrefix returns a prefix string containing the hostname and boot time
// of the machine, which globally uniquely identifies the group-id
// namespace. Cached because the pair is constant for the life of the
// process.
func getPrefix() (string, error) {
	if cachedPrefix == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return "", err
		}
		boottime, err := getBoottime()
		if err != nil {
			return "", err
		}
		cachedPrefix = fmt.Sprintf("%s_%d", hostname, boottime)
	}
	return cachedPrefix, nil
}

// FromSerial returns a globally unique identifier for a RecordGroup with
// the given serial number (assuming hostnames are unique).
func FromSerial(serial uint64) (string, error) {
	prefix, err := getPrefix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%X", prefix, serial), nil
}
