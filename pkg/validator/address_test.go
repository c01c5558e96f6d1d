package validator

import "testing"

func TestValidateIPv4(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"192.168.1.100", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},
		{"10.0.0.1", true},
		{"256.1.1.1", false},
		{"192.168.1", false},
		{"192.168.1.1.1", false},
		{"192.168.1.1/24", false},
		{"192.168.1.1:80", false},
		{"abc.def.ghi.jkl", false},
		{"", false},
		{" 192.168.1.1", false},
	}

	for _, tt := range tests {
		if got := ValidateIPv4(tt.address); got != tt.valid {
			t.Errorf("ValidateIPv4(%q) = %v, want %v", tt.address, got, tt.valid)
		}
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		target string
		valid  bool
	}{
		{"example.com", true},
		{"10.0.0.5:5432", true},
		{"https://api.example.com/health", true},
		{"http://", false},
		{"ftp://files.example.com", false},
		{"https://:8443", false},
		{"10.0.0.5:0", false},
		{"10.0.0.5:http", false},
		{":5432", false},
		{"db host", false},
		{"::1", true},
		{"[::1]:6379", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateTarget(tt.target); got != tt.valid {
			t.Errorf("ValidateTarget(%q) = %v, want %v", tt.target, got, tt.valid)
		}
	}
}
