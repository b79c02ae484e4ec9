package message_test

import (
	"fmt"
	"time"

	"github.com/jittakal/targets3/pkg/message"
)

func ExamplePartition_Key() {
	p := message.Partition{
		Stream: "orders",
		Date:   message.Date{Year: 2012, Month: time.October, Day: 7},
	}

	fmt.Println(p.Key())
	// Output: orders::2012-10-7
}

func ExampleDateOf() {
	t := time.Date(2025, 12, 21, 23, 30, 0, 0, time.UTC)

	fmt.Println(message.DateOf(t))
	// Output: 2025-12-21
}
