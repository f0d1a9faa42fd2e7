// Command ledgerctl inspects and repairs the payment ledger and wallet
// reservations of a token launch gateway deployment.
package main

func main() {
	Execute()
}
