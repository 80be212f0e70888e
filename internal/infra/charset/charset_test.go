package charset

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode_UTF8Passthrough(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF-8", "utf8"} {
		b, err := Encode("名前 é", name)
		if err != nil {
			t.Fatalf("%q: 不期望错误：%v", name, err)
		}
		if string(b) != "名前 é" {
			t.Fatalf("%q: 内容不一致：%q", name, b)
		}
	}
}

func TestEncode_Latin1(t *testing.T) {
	b, err := Encode("café", "iso-8859-1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.Equal(b, []byte{'c', 'a', 'f', 0xE9}) {
		t.Fatalf("编码结果不一致：% x", b)
	}
}

func TestEncode_UnencodableIsError(t *testing.T) {
	if _, err := Encode("名前", "iso-8859-1"); err == nil {
		t.Fatalf("无法表示的字符应报错")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("klingon-8")
	var ue *UnknownEncodingError
	if !errors.As(err, &ue) {
		t.Fatalf("期望 UnknownEncodingError，实际 %v", err)
	}
	if Validate("shift_jis") != nil {
		t.Fatalf("shift_jis 应可用")
	}
}
