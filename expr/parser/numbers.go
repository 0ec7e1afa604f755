package parser

import "strconv"

func parseInt(text string) (int64, error) {
	return strconv.ParseInt(text, 10, 64)
}

func parseFloat(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}
