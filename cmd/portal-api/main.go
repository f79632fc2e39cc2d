package main

func main() {
	app := mustBootstrapPortalAPI()
	defer app.Close()

	if err := app.Run(); err != nil {
		panic(err)
	}
}
