// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package tracking

import (
	"testing"

	"github.com/viewguard/viewguard/internal/models"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{
			"linux desktop",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
			models.DeviceDesktop,
		},
		{
			"windows desktop",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
			models.DeviceDesktop,
		},
		{
			"iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
			models.DeviceMobile,
		},
		{
			"android phone",
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36",
			models.DeviceMobile,
		},
		{
			"ipad",
			"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)",
			models.DeviceTablet,
		},
		{
			"android tablet has no mobi token",
			"Mozilla/5.0 (Linux; Android 14; SM-X910) Safari/537.36",
			models.DeviceTablet,
		},
		{
			"kindle silk",
			"Mozilla/5.0 (Linux; U; en-us; KFAPWI Build/JDQ39) Silk/3.13",
			models.DeviceTablet,
		},
		{
			"empty user agent",
			"",
			models.DeviceDesktop,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDevice(tt.ua); got != tt.want {
				t.Errorf("ClassifyDevice(%q) = %q, want %q", tt.ua, got, tt.want)
			}
		})
	}
}
