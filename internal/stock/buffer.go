package stock

// AdvertisedStock returns the quantity to advertise remotely for an actual
// on-hand quantity. A slice of stock is held back (the larger of
// bufferPercent of actual, rounded up, and minBuffer) so concurrent local
// sales cannot oversell the marketplace listing. Never negative.
func AdvertisedStock(actual, bufferPercent, minBuffer int) int {
	if actual <= 0 {
		return 0
	}
	buffer := ceilPercent(actual, bufferPercent)
	if buffer < minBuffer {
		buffer = minBuffer
	}
	advertised := actual - buffer
	if advertised < 0 {
		return 0
	}
	return advertised
}

func ceilPercent(value, percent int) int {
	if percent <= 0 {
		return 0
	}
	return (value*percent + 99) / 100
}
