// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package tracking

import (
	"regexp"

	"github.com/viewguard/viewguard/internal/models"
)

var (
	tabletTokens  = regexp.MustCompile(`(?i)tablet|ipad|playbook|silk`)
	androidToken  = regexp.MustCompile(`(?i)android`)
	mobiToken     = regexp.MustCompile(`(?i)mobi`)
	mobilePattern = regexp.MustCompile(`Mobile|Android|iP(hone|od)|IEMobile|BlackBerry|Kindle|Silk-Accelerated|(hpw|web)OS|Opera M(obi|ini)`)
)

// ClassifyDevice buckets a user agent into the device classes the event
// schema carries. Unknown or empty user agents default to desktop.
//
// Tablets are checked first: an Android tablet UA carries "Android"
// without the "Mobi" marker, so the mobile pattern would otherwise
// claim it.
func ClassifyDevice(userAgent string) string {
	if userAgent == "" {
		return models.DeviceDesktop
	}
	if tabletTokens.MatchString(userAgent) {
		return models.DeviceTablet
	}
	if androidToken.MatchString(userAgent) && !mobiToken.MatchString(userAgent) {
		return models.DeviceTablet
	}
	if mobilePattern.MatchString(userAgent) {
		return models.DeviceMobile
	}
	return models.DeviceDesktop
}
