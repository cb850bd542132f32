// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

// expectedCDByState is the 118th-Congress apportionment: congressional
// district counts per state FIPS. Must sum to 435 (spec.md §4.1, §8).
var expectedCDByState = map[string]int{
	"01": 7, "02": 1, "04": 9, "05": 4, "06": 52, "08": 8, "09": 5, "10": 1,
	"12": 28, "13": 14, "15": 2, "16": 2, "17": 17, "18": 9, "19": 4, "20": 4,
	"21": 6, "22": 6, "23": 2, "24": 8, "25": 9, "26": 13, "27": 8, "28": 4,
	"29": 8, "30": 2, "31": 3, "32": 4, "33": 2, "34": 12, "35": 3, "36": 26,
	"37": 14, "38": 1, "39": 15, "40": 5, "41": 6, "42": 17, "44": 2, "45": 7,
	"46": 1, "47": 9, "48": 38, "49": 4, "50": 1, "51": 11, "53": 10, "54": 2,
	"55": 8, "56": 1,
}

// expectedCountiesByState is the county/county-equivalent count per
// state FIPS (Virginia's figure includes its independent cities; DC is
// counted as a single county-equivalent). Must sum to 3143.
var expectedCountiesByState = map[string]int{
	"01": 67, "02": 30, "04": 15, "05": 75, "06": 58, "08": 64, "09": 8,
	"10": 3, "11": 1, "12": 67, "13": 159, "15": 5, "16": 44, "17": 102,
	"18": 92, "19": 99, "20": 105, "21": 120, "22": 64, "23": 16, "24": 24,
	"25": 14, "26": 83, "27": 87, "28": 82, "29": 115, "30": 56, "31": 93,
	"32": 17, "33": 10, "34": 21, "35": 33, "36": 62, "37": 100, "38": 53,
	"39": 88, "40": 77, "41": 36, "42": 67, "44": 5, "45": 46, "46": 66,
	"47": 95, "48": 254, "49": 29, "50": 14, "51": 133, "53": 39, "54": 55,
	"55": 72, "56": 23,
}

// sldu/sldl are state-legislature upper/lower chamber seat counts.
// Nebraska's unicameral legislature is the load-time invariant check:
// SLDU["31"] == 49, SLDL["31"] == 0 (spec.md §4.1, §8).
var expectedSLDUByState = map[string]int{
	"01": 35, "02": 20, "04": 30, "05": 35, "06": 40, "08": 35, "09": 36,
	"10": 21, "12": 40, "13": 56, "15": 25, "16": 35, "17": 59, "18": 50,
	"19": 50, "20": 40, "21": 38, "22": 39, "23": 35, "24": 47, "25": 40,
	"26": 38, "27": 67, "28": 52, "29": 34, "30": 50, "31": 49, "32": 21,
	"33": 24, "34": 40, "35": 42, "36": 63, "37": 50, "38": 47, "39": 33,
	"40": 48, "41": 30, "42": 50, "44": 38, "45": 46, "46": 35, "47": 33,
	"48": 31, "49": 29, "50": 30, "51": 40, "53": 49, "54": 34, "55": 33,
	"56": 30,
}

var expectedSLDLByState = map[string]int{
	"01": 105, "02": 40, "04": 60, "05": 100, "06": 80, "08": 65, "09": 151,
	"10": 41, "12": 120, "13": 180, "15": 51, "16": 70, "17": 118, "18": 100,
	"19": 100, "20": 125, "21": 100, "22": 105, "23": 151, "24": 141, "25": 160,
	"26": 110, "27": 134, "28": 122, "29": 163, "30": 100, "31": 0, "32": 42,
	"33": 400, "34": 80, "35": 70, "36": 150, "37": 120, "38": 94, "39": 99,
	"40": 101, "41": 60, "42": 203, "44": 75, "45": 124, "46": 70, "47": 99,
	"48": 150, "49": 75, "50": 150, "51": 100, "53": 98, "54": 100, "55": 99,
	"56": 62,
}

// atLargeStates lists the states whose single congressional district is
// at-large (population too small for more than one seat).
var atLargeStates = map[string]bool{
	"02": true, "10": true, "38": true, "46": true, "50": true, "56": true,
}

// dualSystemStates are the states where elementary (ELSD) and secondary
// (SCSD) school districts are split and legitimately overlap the same
// territory (spec.md §4.6's school-district tie-break table).
var dualSystemStates = map[string]bool{
	"09": true, // CT
	"17": true, // IL
	"23": true, // ME
	"25": true, // MA
	"30": true, // MT
	"33": true, // NH
	"34": true, // NJ
	"44": true, // RI
	"50": true, // VT
}
