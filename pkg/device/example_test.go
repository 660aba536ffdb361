package device_test

import (
	"context"
	"fmt"

	"github.com/vnykmshr/stagebridge/pkg/device"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// fader decodes control-change messages into a fader position.
type fader struct{}

func (fader) ProcessInput(data []byte) (int, bool) {
	if len(data) != 3 || data[0]&0xF0 != 0xB0 {
		return 0, false
	}
	return int(data[2]), true
}

func (fader) ProcessOutput(level int) []byte {
	return []byte{0xB0, 0x07, byte(level)}
}

func ExampleOpen() {
	port := device.NewMemoryPort(4)
	d, err := device.Open[int, int](port, fader{}, device.Config{
		Name:     "faders",
		Observer: telemetry.Nop{},
	})
	if err != nil {
		panic(err)
	}
	defer d.Close()

	sub := d.Subscribe()
	defer sub.Close()

	_ = port.Inject([]byte{0xB0, 0x07, 100})
	level, _ := sub.Recv(context.Background())
	fmt.Println("fader at", level)

	wrote := port.Wrote()
	_ = d.Send(context.Background(), level/2)
	<-wrote
	fmt.Printf("motor % x\n", port.Written()[0])

	// Output:
	// fader at 100
	// motor b0 07 32
}
