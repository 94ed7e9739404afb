package panels

// Default panel bodies. Edits replace these in memory only.
const (
	SummaryBody = "Ri has spent the semester developing a new introductory physics lab course in collaboration with the Physics Department. Under the supervision of the Associate Director of Instructional Physics Labs, Ri is building the course from the ground up.\n\nCurrently, physics concentrators at Harvard receive only a brief exposure to experimental physics within their introductory lecture course. We have found that this limited time prevents students from meeting our learning goals. This new lab course is designed to provide a much more comprehensive introduction to experimental physics and, to our knowledge, is the first course of its kind at Harvard.\n\nOur aim is to create a course that can be adopted by a wide range of instructors at Harvard and beyond. Ri’s primary work this semester has focused on developing detailed learning objectives and goals. **Use this webpage to explore the course description and learning goals developed so far. Please leave a comment at the bottom of this page with any ideas or feedback you have.**"

	DescriptionBody = "In this class, you will engage in experimental physics to build the foundational skills needed to design, conduct, and communicate research in physics. The course includes weekly lectures introducing coding and statistical tools and weekly labs for data collection and analysis where you will measure the speed of light, measure the radioactivity of different objects, and more! The class will culminate with two mini-projects that you can choose from a physics subfield of your interest, such as condensed matter, optics, and others! Throughout the semester, you will learn to identify key variables in physical systems, design and carry out measurements using real experimental apparatuses, and recognize the limitations and sources of error in your experiments. Through guided instruction in statistics and coding, you will analyze and visualize experimental and simulated data using Python, quantify uncertainty, and compare results to analytical physical models. Emphasis is placed on clear scientific communication—documenting experimental methods, interpreting data, and presenting findings in both written and oral formats."

	ExperimentBody = "Based on a research question, identify the important variables in the physical system, design a method to measure and manipulate those variables, construct or use an apparatus to carry out the measurement, understand the limitations of your apparatus, and iterate your experiments and models to achieve reasonable results."

	StatisticsBody = "Quantitatively interpret experimental data by accounting for the inherent uncertainty of physical experiments and compare your results with analytical physical models."

	CodeBody = "Record and manipulate large amounts of experimental and simulated data and create representations of that data using Python."

	CommunicationBody = "Clearly communicate your experimental approach and your reasoning for that approach. Articulate the conclusions you made and the reasoning behind those conclusions."
)

// learningGoals are the read-only goal lists shown under each category panel.
var learningGoals = map[string][]string{
	Experiment: {
		"Identify sources of error for a given apparatus or experimental set-up",
		"Identify relevant variables in a physical system",
		"Use real experimental instruments you may encounter in a research lab.",
		"Develop and implement a systematic plan for carrying out an experiment based on a research question.",
		"Predict or hypothesize how changing variables in a physical system will change the outcome",
	},
	Statistics: {
		"Recognize and understand appropriate statistical methods for a given set of experimental data",
		"Calculate and interpret statistical and systematic uncertainty in experimental data and use error propagation.",
		"Calculate and interpret p-values, standard errors, means, medians, modes, relevant distributions",
		"Use curve-fitting methods and interpret results",
		"Compare experimental data to pre-existing physical model and draw conclusions from the comparison. Based on these comparisons, implement iterative improvements to experimental methods and analytical models.",
		"Compare multiple physical models",
	},
	Code: {
		"Recognize, describe, write, and execute fundamental Python syntax and use structures (variables, functions, conditionals, loops, lists, dictionaries, and packages) to solve physics problems without the use of AI.",
		"Write code that is annotated, clear, well documented, understandable to another classmate, and utilizes stylistic best practices",
		"Identify common Python error messages and what they indicate.",
		"Write code to convert between different representations of data: tables, plots, arrays, variables",
		"Analyze experimental data using Python, applying appropriate libraries (e.g., NumPy, pandas, matplotlib).",
		"Design and implement Python programs to simulate physical systems or test physical models. (we may consider allowing them to us AI for this after they have built coding fundamentals)",
		"Create plots of experimental data in Python",
	},
	Communication: {
		"Document experimental procedures such that they are replicable",
		"Clearly communicate through text and figures your conclusions based on experimental data.",
		"Clearly communicate in writing, diagrams, and drawings in detail your systematic plan for carrying out an experiment",
		"Articulate troubleshooting approach when experiment isn't going to plan",
		"Present scientific results in conference-style presentation",
	},
}
