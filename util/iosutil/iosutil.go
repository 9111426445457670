// Package iosutil classifies the iOS versions whose ad tracking signals need rewriting.
package iosutil

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errVersionFormat = errors.New("expected either major.minor or major.minor.patch format")
	errMajorVersion  = errors.New("major version is not an integer")
	errMinorVersion  = errors.New("minor version is not an integer")
)

// IOSVersion is the major.minor version of an iOS device. The patch level is ignored.
type IOSVersion struct {
	Major int
	Minor int
}

// ParseIOSVersion reads a major.minor or major.minor.patch version.
func ParseIOSVersion(v string) (IOSVersion, error) {
	parts := strings.Split(v, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return IOSVersion{}, errVersionFormat
	}

	var version IOSVersion
	var err error
	if version.Major, err = strconv.Atoi(parts[0]); err != nil {
		return IOSVersion{}, errMajorVersion
	}
	if version.Minor, err = strconv.Atoi(parts[1]); err != nil {
		return IOSVersion{}, errMinorVersion
	}
	return version, nil
}

// Compare returns -1, 0 or 1 as the version is below, at or above major.minor.
func (v IOSVersion) Compare(major, minor int) int {
	switch {
	case v.Major != major:
		return sign(v.Major - major)
	default:
		return sign(v.Minor - minor)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// VersionClassification groups iOS versions by how they signal ad tracking consent.
type VersionClassification int

const (
	VersionUnknown VersionClassification = iota
	Version140
	Version141
	Version142OrGreater
)

// DetectVersionClassification classifies the os version reported by a device.
func DetectVersionClassification(v string) VersionClassification {
	version, err := ParseIOSVersion(v)
	if err != nil {
		return VersionUnknown
	}

	switch {
	case version.Compare(14, 0) == 0:
		return Version140
	case version.Compare(14, 1) == 0:
		return Version141
	case version.Compare(14, 2) >= 0:
		return Version142OrGreater
	}
	return VersionUnknown
}
