package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxReferenceLen is the longest reference (field 62-05) a BR Code carries.
const MaxReferenceLen = 25

// BRCode holds the fields of a static EMV instant-payment payload.
type BRCode struct {
	PayeeKey     string
	Amount       decimal.Decimal
	MerchantName string
	MerchantCity string
	Reference    string
}

func (b BRCode) String() string {
	ref := sanitize(b.Reference, MaxReferenceLen)
	if ref == "" {
		ref = "***"
	}

	var sb strings.Builder
	sb.WriteString(tlv("00", "01"))
	sb.WriteString(tlv("26", tlv("00", "br.gov.bcb.pix")+tlv("01", b.PayeeKey)))
	sb.WriteString(tlv("52", "0000"))
	sb.WriteString(tlv("53", "986"))
	if b.Amount.IsPositive() {
		sb.WriteString(tlv("54", b.Amount.StringFixed(2)))
	}
	sb.WriteString(tlv("58", "BR"))
	sb.WriteString(tlv("59", sanitize(b.MerchantName, 25)))
	sb.WriteString(tlv("60", sanitize(b.MerchantCity, 15)))
	sb.WriteString(tlv("62", tlv("05", ref)))
	sb.WriteString("6304")

	payload := sb.String()
	return payload + fmt.Sprintf("%04X", CRC16(payload))
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func sanitize(s string, limit int) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r < 128 && (r == ' ' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	out := strings.TrimSpace(sb.String())
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
