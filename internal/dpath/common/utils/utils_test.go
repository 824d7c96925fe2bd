package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDNSName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Baidu.COM.", "baidu.com"},
		{"  www.qq.com  ", "www.qq.com"},
		{"example.com...", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalDNSName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeRuleDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+.baidu.com", "baidu.com"},
		{"*.qq.com", "qq.com"},
		{".taobao.com", "taobao.com"},
		{"'163.com'", "163.com"},
		{`"JD.com."`, "jd.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRuleDomain(tt.in), "input %q", tt.in)
	}
}

func TestIsPublicSuffix(t *testing.T) {
	assert.True(t, IsPublicSuffix("cn"))
	assert.True(t, IsPublicSuffix("com.cn"))
	assert.True(t, IsPublicSuffix("COM."))
	assert.False(t, IsPublicSuffix("baidu.com"))
	assert.False(t, IsPublicSuffix("notarealtld"))
	assert.False(t, IsPublicSuffix(""))
}

func TestGetApexDomain(t *testing.T) {
	assert.Equal(t, "baidu.com", GetApexDomain("www.map.baidu.com"))
	assert.Equal(t, "sina.com.cn", GetApexDomain("news.sina.com.cn."))
	assert.Equal(t, "com", GetApexDomain("com"))
}
