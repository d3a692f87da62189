// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

package config

const (
	defaultSocketName        = "wifid"
	defaultSocketType        = "seqpacket"
	defaultReadBuffer        = 4096
	defaultInitialDelayMS    = 100
	defaultMaxDelayMS        = 5000
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultInterface         = "wlan0"
	defaultSupplicantCtrlDir = "/data/misc/wifi/sockets"
	defaultCommandTimeoutMS  = 10000
	defaultHostapdCtrlDir    = "/data/misc/wifi/hostapd"
	defaultConnectRetries    = 20
	defaultRetryIntervalMS   = 1
	defaultInterfacePrefix   = "wlan"
	defaultLockFile          = "/run/wifid.lock"
)

// Default returns a Config populated with the default values.
// The driver commands are empty, and so do nothing until configured.
func Default() Config {
	return Config{
		Socket: Socket{
			Name:       defaultSocketName,
			Type:       defaultSocketType,
			ReadBuffer: defaultReadBuffer,
		},
		Reconnect: Reconnect{
			InitialDelayMS: defaultInitialDelayMS,
			MaxDelayMS:     defaultMaxDelayMS,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Supplicant: Supplicant{
			Interface:        defaultInterface,
			CtrlDir:          defaultSupplicantCtrlDir,
			CommandTimeoutMS: defaultCommandTimeoutMS,
		},
		Hostapd: Hostapd{
			CtrlDir:         defaultHostapdCtrlDir,
			ConnectRetries:  defaultConnectRetries,
			RetryIntervalMS: defaultRetryIntervalMS,
		},
		Monitor: Monitor{
			Enabled:         true,
			InterfacePrefix: defaultInterfacePrefix,
		},
		LockFile: defaultLockFile,
	}
}
