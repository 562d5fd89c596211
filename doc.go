// Package neat is the root of a Go implementation of NeuroEvolution of
// Augmenting Topologies (NEAT) and its HyperNEAT extension.
//
// NEAT evolves both the weights and the structure of neural networks. Genes
// carry innovation IDs derived from their structural coordinates, so genomes
// from independent lineages align during crossover without a shared
// innovation database. HyperNEAT evolves a CPPN genome whose network paints
// the connection weights of a larger substrate network.
//
// The packages are:
//
//	neat/nn         phenotype networks: layers, neurons, recurrent context
//	                neurons, backpropagation, DOT export
//	neat/optim      losses, optimizers and learning-rate schedulers
//	neat            genomes, mutation, crossover, species, populations,
//	                selection, configuration and checkpoints
//	neat/hyperneat  CPPN-driven substrate generation
//	neat/store      run archive in memory or SQLite
//	neat/metrics    Prometheus reporter
//
// Basic usage:
//
//	// Load configuration
//	config, err := neat.LoadConfig("path/to/config.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	// Create a new population
//	rng := rand.New(rand.NewSource(config.Neat.Seed))
//	pop, err := neat.NewPopulation(config, rng, neat.GenomeFactory(config))
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//	pop.AddReporter(neat.LogReporter{})
//
//	// Run for 100 generations with your fitness function
//	for i := 0; i < 100; i++ {
//		winner, err := pop.RunGeneration(evalGenome)
//		if err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//
//		if winner != nil {
//			fmt.Println("Solution found!")
//			break
//		}
//	}
package neat
