// Package speech converts phone numbers, dates, and times into strings that
// are safe to hand to a TTS engine. Malformed input never fails; every
// function degrades to a spoken-digit fallback or returns the input as-is.
package speech

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var digitWords = map[rune]string{
	'0': "zero", '1': "one", '2': "two", '3': "three", '4': "four",
	'5': "five", '6': "six", '7': "seven", '8': "eight", '9': "nine",
}

var dayWords = map[int]string{
	1: "first", 2: "second", 3: "third", 4: "fourth", 5: "fifth",
	6: "sixth", 7: "seventh", 8: "eighth", 9: "ninth", 10: "tenth",
	11: "eleventh", 12: "twelfth", 13: "thirteenth", 14: "fourteenth",
	15: "fifteenth", 16: "sixteenth", 17: "seventeenth", 18: "eighteenth",
	19: "nineteenth", 20: "twentieth", 21: "twenty-first", 22: "twenty-second",
	23: "twenty-third", 24: "twenty-fourth", 25: "twenty-fifth",
	26: "twenty-sixth", 27: "twenty-seventh", 28: "twenty-eighth",
	29: "twenty-ninth", 30: "thirtieth", 31: "thirty-first",
}

var hourWords = map[int]string{
	1: "one", 2: "two", 3: "three", 4: "four", 5: "five", 6: "six",
	7: "seven", 8: "eight", 9: "nine", 10: "ten", 11: "eleven", 12: "twelve",
}

// PhoneForSpeech renders a phone number digit by digit. Ten digits are
// grouped 3/3/4 with pauses; eleven digits with a leading country code 1
// keep the "one" up front. Anything else is spoken straight through.
func PhoneForSpeech(phone string) string {
	var digits []rune
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}

	speak := func(ds []rune) string {
		words := make([]string, len(ds))
		for i, d := range ds {
			words[i] = digitWords[d]
		}
		return strings.Join(words, " ")
	}

	switch {
	case len(digits) == 10:
		return speak(digits[:3]) + ", " + speak(digits[3:6]) + ", " + speak(digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return "one, " + speak(digits[1:4]) + ", " + speak(digits[4:7]) + ", " + speak(digits[7:])
	default:
		return speak(digits)
	}
}

// DateForSpeech renders an ISO date (or the date portion of a timestamp) as
// "January twenty-sixth". On parse failure the input is returned unchanged.
func DateForSpeech(dateStr string) string {
	datePart := strings.TrimSuffix(dateStr, "Z")
	if i := strings.IndexAny(datePart, "T "); i >= 0 {
		datePart = datePart[:i]
	}

	dt, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return dateStr
	}

	day := dt.Day()
	dayWord, ok := dayWords[day]
	if !ok {
		dayWord = fmt.Sprintf("%d%s", day, ordinalSuffix(day))
	}

	return dt.Month().String() + " " + dayWord
}

// TimeForSpeech renders a 24-hour clock time (or the time portion of a
// timestamp) as "two PM", "nine thirty AM", "eleven 45 PM". On parse
// failure the input is returned unchanged.
func TimeForSpeech(timeStr string) string {
	timePart := timeStr
	if i := strings.IndexAny(timePart, "T "); i >= 0 {
		timePart = timePart[i+1:]
	}
	parts := strings.Split(timePart, ":")
	if len(parts) < 2 {
		return timeStr
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return timeStr
	}
	minuteStr := parts[1]
	if len(minuteStr) > 2 {
		minuteStr = minuteStr[:2]
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return timeStr
	}

	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	switch {
	case hour == 0:
		hour = 12
	case hour > 12:
		hour -= 12
	}

	hourWord := hourWords[hour]

	switch minute {
	case 0:
		return hourWord + " " + period
	case 30:
		return hourWord + " thirty " + period
	default:
		return fmt.Sprintf("%s %02d %s", hourWord, minute, period)
	}
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
