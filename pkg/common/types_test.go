package common

import "testing"

func TestMACAddressString(t *testing.T) {
	mac := MACAddress{0x01, 0x00, 0x5E, 0x00, 0x00, 0x01}
	want := "01:00:5e:00:00:01"
	if got := mac.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMACAddressIsMulticast(t *testing.T) {
	multicast := MACAddress{0x01, 0x00, 0x5E, 0x01, 0x02, 0x03}
	if !multicast.IsMulticast() {
		t.Error("IsMulticast() = false for 01:00:5e address, want true")
	}

	unicast := MACAddress{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
	if unicast.IsMulticast() {
		t.Error("IsMulticast() = true for unicast address, want false")
	}

	if !BroadcastMAC.IsBroadcast() {
		t.Error("IsBroadcast() = false for BroadcastMAC, want true")
	}
}

func TestIPv4AddressIsMulticast(t *testing.T) {
	tests := []struct {
		addr IPv4Address
		want bool
	}{
		{IPv4Address{224, 0, 0, 1}, true},
		{IPv4Address{239, 255, 255, 255}, true},
		{IPv4Address{223, 255, 255, 255}, false},
		{IPv4Address{240, 0, 0, 1}, false},
		{IPv4Address{192, 168, 1, 1}, false},
	}

	for _, tt := range tests {
		if got := tt.addr.IsMulticast(); got != tt.want {
			t.Errorf("IsMulticast(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestIPv4AddressUint32RoundTrip(t *testing.T) {
	addr := IPv4Address{224, 0, 0, 252}
	if got := IPv4FromUint32(addr.ToUint32()); got != addr {
		t.Errorf("IPv4FromUint32(ToUint32()) = %s, want %s", got, addr)
	}
	if got := addr.ToUint32(); got != 0xE00000FC {
		t.Errorf("ToUint32() = 0x%08x, want 0xE00000FC", got)
	}
}

func TestParseIPv4(t *testing.T) {
	addr, err := ParseIPv4("239.1.2.3")
	if err != nil {
		t.Fatalf("ParseIPv4() error = %v", err)
	}
	if addr != (IPv4Address{239, 1, 2, 3}) {
		t.Errorf("ParseIPv4() = %s, want 239.1.2.3", addr)
	}

	if _, err := ParseIPv4("not-an-ip"); err == nil {
		t.Error("ParseIPv4(invalid) error = nil, want error")
	}
	if _, err := ParseIPv4("::1"); err == nil {
		t.Error("ParseIPv4(IPv6) error = nil, want error")
	}
}
