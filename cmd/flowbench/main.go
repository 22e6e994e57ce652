// Command flowbench drives an optical flow peer over a serial link, records
// what it answers and compares it against reference flow.
package main

func main() {
	Execute()
}
