package device

import (
	"sort"
	"testing"
)

func TestDriverInfoListSorting(t *testing.T) {
	defer func(orig DriverInfoList) {
		registeredDrivers = orig
	}(registeredDrivers)
	registeredDrivers = nil

	origlist := []*DriverInfo{
		{Order: DetectOrderInput},
		{Order: DetectOrderLast},
		{Order: DetectOrderBeforeInput},
		{Order: DetectOrderEarly},
	}

	for _, drv := range origlist {
		RegisterDriver(drv)
	}

	registeredList := DriverList()
	if exp, got := len(origlist), len(registeredList); got != exp {
		t.Fatalf("expected DriverList() to return %d entries; got %d", exp, got)
	}

	sort.Sort(registeredList)
	expOrder := []int{3, 2, 0, 1}
	for i, exp := range expOrder {
		if registeredList[i] != origlist[exp] {
			t.Errorf("expected sorted entry %d to be %v; got %v", i, origlist[exp], registeredList[i])
		}
	}

	if registeredDrivers[0] != origlist[0] {
		t.Fatal("expected sorting the returned list to leave the registered list untouched")
	}
}
