package readiness_test

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-readiness"
)

func ExampleDispatcher() {
	d, err := readiness.New()
	if err != nil {
		panic(err)
	}
	defer d.Stop()

	q := readiness.NewQueue[string]()
	q.Write(`Hello`)
	q.Write(`World`)

	if err := readiness.AddMessage(d, q, readiness.ModeSync, func(value string) error {
		fmt.Println(value)
		if value == `World` {
			// closing the channel is how a callback ends Run
			return q.Close()
		}
		return nil
	}); err != nil {
		panic(err)
	}

	if err := d.Run(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println(d.LastChannel() == readiness.Channel(q), d.Empty())

	//output:
	//Hello
	//World
	//true true
}

func ExampleTimer() {
	d, err := readiness.New(readiness.WithTick(time.Millisecond))
	if err != nil {
		panic(err)
	}
	defer d.Stop()

	timer := readiness.NewTimer(time.Millisecond * 5)
	var ticks int
	if err := d.Add(timer, readiness.ModeSync, func() error {
		ticks++
		if ticks == 3 {
			return timer.Close()
		}
		return nil
	}); err != nil {
		panic(err)
	}

	_ = d.Run(context.Background())

	fmt.Println(ticks, timer.Poll())

	//output:
	//3 Closed
}

func ExampleLatch() {
	latch := readiness.NewLatch[string]()
	latch.Write(`Hello`)
	latch.Write(`Hello`)
	latch.Write(`World`)

	fmt.Println(latch.Read())
	fmt.Println(latch.Poll())

	//output:
	//World true
	//Waiting
}
